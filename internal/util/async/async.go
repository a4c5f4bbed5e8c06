// Package async provides utilities for bounded parallel task execution.
//
// Tasks are isolated from each other: a failing task never cancels its
// siblings, and every task's outcome is reported back in input order.
package async

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Task represents an asynchronous operation with a name and function.
type Task struct {
	Name string
	Func func(context.Context) error
}

// Result is the outcome of one task.
type Result struct {
	Name string
	Err  error
}

// RunBounded executes tasks with at most limit running at once and returns
// one Result per task, in input order. A limit below 1 runs tasks
// sequentially. A cancelled context stops tasks that have not started yet;
// they report the context error.
//
// Example:
//
//	results := RunBounded(ctx, 4, []Task{
//	    {Name: "pi-1", Func: joinPi1},
//	    {Name: "pi-2", Func: joinPi2},
//	})
func RunBounded(ctx context.Context, limit int, tasks []Task) []Result {
	results := make([]Result, len(tasks))
	if len(tasks) == 0 {
		return results
	}
	if limit < 1 {
		limit = 1
	}

	var g errgroup.Group
	g.SetLimit(limit)

	for i, task := range tasks {
		results[i].Name = task.Name
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			results[i].Err = task.Func(ctx)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Errors joins the failures of results, naming each task. It returns nil
// when every task succeeded.
func Errors(results []Result) error {
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Name, r.Err))
		}
	}
	return errors.Join(errs...)
}

// Succeeded counts results without an error.
func Succeeded(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Err == nil {
			n++
		}
	}
	return n
}
