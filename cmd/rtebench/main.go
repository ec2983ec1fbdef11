// Copyright 2016-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Command rtebench provides a load-generation tool for RTE,
// grounded on the teacher's cmd/coordbench (urfave/cli subcommands,
// satori/go.uuid task payloads, a Concurrency-driven worker pool)
// generalized from Coordinate work units to RTE tasks submitted
// through client.BatchClient.
package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	uuid "github.com/satori/go.uuid"
	"github.com/urfave/cli"

	"github.com/diffeo/go-rte/client"
	"github.com/diffeo/go-rte/transport/rpcclient"
)

var serverURL string
var concurrency int

var submit = cli.Command{
	Name:  "submit",
	Usage: "submit many trivial tasks and wait for their results",
	Flags: []cli.Flag{
		cli.IntFlag{
			Name:  "count",
			Value: 1000,
			Usage: "number of tasks to submit",
		},
	},
	Action: func(c *cli.Context) error {
		count := c.Int("count")

		remote, err := rpcclient.New(serverURL, nil)
		if err != nil {
			return err
		}

		tasks := make([][]byte, count)
		for i := range tasks {
			tasks[i] = []byte(uuid.NewV4().String())
		}

		t0 := time.Now()
		cl := &client.Client{Server: remote, RefreshTime: 100 * time.Millisecond}
		bc := client.NewBatchClient(cl)
		results := bc.Solve(context.Background(), tasks)
		elapsed := time.Since(t0)

		succeeded := 0
		for _, r := range results {
			if r != nil {
				succeeded++
			}
		}
		fmt.Printf("submitted %d tasks, %d succeeded, in %v (%.1f/s)\n",
			count, succeeded, elapsed, float64(count)/elapsed.Seconds())
		return nil
	},
}

var flood = cli.Command{
	Name:  "flood",
	Usage: "submit tasks continuously from Concurrency goroutines",
	Action: func(c *cli.Context) error {
		remote, err := rpcclient.New(serverURL, nil)
		if err != nil {
			return err
		}

		var wg sync.WaitGroup
		wg.Add(concurrency)
		for i := 0; i < concurrency; i++ {
			go func() {
				defer wg.Done()
				cl := &client.Client{Server: remote, RefreshTime: 100 * time.Millisecond}
				bc := client.NewBatchClient(cl)
				for {
					task := []byte(uuid.NewV4().String())
					bc.Solve(context.Background(), [][]byte{task})
				}
			}()
		}
		wg.Wait()
		return nil
	},
}

func main() {
	app := cli.NewApp()
	app.Usage = "benchmark an RTE server"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:        "server",
			Value:       "http://localhost:5934/",
			Usage:       "rted base URL",
			Destination: &serverURL,
		},
		cli.IntFlag{
			Name:        "concurrency",
			Value:       runtime.NumCPU(),
			Usage:       "run this many client goroutines in parallel",
			Destination: &concurrency,
		},
	}
	app.Commands = []cli.Command{
		submit,
		flood,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "rtebench: %v\n", err)
		os.Exit(1)
	}
}
