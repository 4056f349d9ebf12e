package main

import (
	"flag"

	"github.com/ds124wfegd/gymbooker/config"
	"github.com/ds124wfegd/gymbooker/internal/appServer"

	"github.com/sirupsen/logrus"
)

func main() {
	once := flag.Bool("once", false, "run a single sweep and exit")
	flag.Parse()

	logrus.SetFormatter(new(logrus.JSONFormatter))

	viperInstance, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Cannot load config. Error: {%s}", err.Error())
	}

	cfg, err := config.ParseConfig(viperInstance)
	if err != nil {
		logrus.Fatalf("Cannot parse config. Error: {%s}", err.Error())
	}

	appServer.RunDispatcher(cfg, *once)
}
