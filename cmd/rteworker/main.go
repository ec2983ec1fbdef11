// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Command rteworker provides a complete demonstration RTE worker
// process. It connects to a remote rted over HTTP and executes a
// trivial task: each task's payload is a JSON object naming an
// operation and two integers, decoded via mapstructure exactly as the
// teacher's demoworker decodes work unit data, and the result is the
// integers combined according to the operation.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"

	"github.com/diffeo/go-rte/config"
	"github.com/diffeo/go-rte/transport/rpcclient"
	"github.com/diffeo/go-rte/worker"
)

type demoTask struct {
	Op string
	A  int
	B  int
}

func main() {
	serverURL := flag.String("server", "http://localhost:5934/", "rted base URL")
	configPath := flag.String("config", "", "YAML configuration file")
	flag.Parse()

	log := logrus.New()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.WithField("error", err).Fatal("could not load configuration")
		}
	}

	remote, err := rpcclient.New(*serverURL, nil)
	if err != nil {
		log.WithField("error", err).Fatal("could not build rpcclient")
	}
	remote.ErrorHandler = func(err error) {
		log.WithField("error", err).Warn("rteworker transport error")
	}

	w := &worker.Worker{
		Server:      remote,
		RefreshTime: cfg.RefreshTime,
		Log:         log,
		ExecuteTask: executeDemoTask,
		OnCancel: func() {
			log.Info("rteworker task canceled")
		},
	}

	log.WithField("server", *serverURL).Info("rteworker starting")
	w.Run(0)
}

func executeDemoTask(payload []byte) ([]byte, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, err
	}

	var task demoTask
	if err := mapstructure.Decode(raw, &task); err != nil {
		return nil, err
	}

	var result int
	switch task.Op {
	case "add":
		result = task.A + task.B
	case "sub":
		result = task.A - task.B
	case "mul":
		result = task.A * task.B
	default:
		return nil, fmt.Errorf("unknown op %q", task.Op)
	}

	time.Sleep(time.Millisecond) // simulate a small amount of work
	return json.Marshal(map[string]interface{}{"result": result})
}
