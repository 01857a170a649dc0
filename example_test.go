package driftq_test

import (
	"context"
	"fmt"
	"time"

	"github.com/ygrebnov/driftq"
)

func Example() {
	q, err := driftq.New(30*time.Second,
		func(_ context.Context, job string) error {
			fmt.Println("processing", job)
			return nil
		},
	)
	if err != nil {
		panic(err)
	}

	ctx := context.Background()
	// With the default limit of one, Submit returns once the job finished.
	if _, err := q.Submit(ctx, "job-1"); err != nil {
		panic(err)
	}
	_ = q.Idle(ctx)
	fmt.Println("pending:", q.Len())

	// Output:
	// processing job-1
	// pending: 0
}
