// Package main is the entry point for the bilingual RAG service.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/sentinel-rag/cmd/rag/app"
)

func main() {
	app.NewApp().Run()
}
