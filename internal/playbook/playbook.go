// Package playbook runs a YAML list of module tasks in order, stopping at the first failure.
package playbook

import (
	"context"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/dokzlo13/pflexctl/internal/app"
	"github.com/dokzlo13/pflexctl/internal/errs"
)

// Runner executes one task.
type Runner interface {
	Run(ctx context.Context, task *app.Task) (app.Output, error)
}

// Result is the outcome of one task.
type Result struct {
	Name   string     `json:"name"`
	Module string     `json:"module"`
	Output app.Output `json:"result"`
}

// Load reads a playbook file.
func Load(path string) ([]*app.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse parses a playbook: a YAML list of tasks.
func Parse(data []byte) ([]*app.Task, error) {
	var tasks []*app.Task
	if err := yaml.Unmarshal(data, &tasks); err != nil {
		return nil, errs.Mark(errors.Wrap(err, "parse playbook"), errs.ErrInvalidParameter)
	}
	for i, t := range tasks {
		if t == nil || t.Module == "" {
			return nil, errs.Newf(errs.ErrInvalidParameter, "task %d: module is required", i+1)
		}
		if t.Name == "" {
			t.Name = t.Module
		}
	}
	return tasks, nil
}

// Run executes tasks in order. checkMode forces check mode on every task. On failure
// the results so far end with the failed task and the error is returned.
func Run(ctx context.Context, r Runner, tasks []*app.Task, checkMode bool) ([]Result, error) {
	results := make([]Result, 0, len(tasks))
	for i, t := range tasks {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		if checkMode {
			t.CheckMode = true
		}

		log.Info().Int("task", i+1).Str("name", t.Name).Str("module", t.Module).Msg("Task")

		out, err := r.Run(ctx, t)
		if err != nil {
			results = append(results, Result{Name: t.Name, Module: t.Module, Output: app.Failure(err)})
			return results, errors.Wrapf(err, "task %q", t.Name)
		}
		results = append(results, Result{Name: t.Name, Module: t.Module, Output: out})
	}
	return results, nil
}
