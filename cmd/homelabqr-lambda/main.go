// Package main serves the QR HTTP surface from AWS Lambda.
package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/louisbranch/homelabqr/internal/cmd/qrlambda"
	entrypoint "github.com/louisbranch/homelabqr/internal/platform/cmd"
	"github.com/louisbranch/homelabqr/internal/platform/otel"
)

func main() {
	log.SetPrefix("[HOMELABQR-LAMBDA] ")
	ctx := context.Background()

	cfg, err := qrlambda.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	shutdown, err := otel.Setup(ctx, entrypoint.ServiceLambda)
	if err != nil {
		log.Fatalf("otel setup: %v", err)
	}
	adapter, closeRuntime, err := qrlambda.NewAdapter(ctx, cfg)
	if err != nil {
		log.Fatalf("init runtime: %v", err)
	}

	lambda.StartWithOptions(adapter.Handle, lambda.WithEnableSIGTERM(func() {
		if err := shutdown(context.Background()); err != nil {
			log.Printf("otel shutdown: %v", err)
		}
		if err := closeRuntime(); err != nil {
			log.Printf("close runtime: %v", err)
		}
	}))
}
