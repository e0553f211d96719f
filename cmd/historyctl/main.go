package main

import (
	"context"
	"os"

	"github.com/gogotex/gogotex/backend/go-history/pkg/logger"
)

func main() {
	// LOG_LEVEL: debug|info|warn|error|fatal; logs go to stderr, responses to stdout
	logger.Init(os.Getenv("LOG_LEVEL"))
	os.Exit(run(context.Background(), os.Args, os.Stdin, os.Stdout, connectMongo))
}
