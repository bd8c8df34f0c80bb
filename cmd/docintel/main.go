// Command docintel runs the document-intelligence HTTP API: query
// submission, retrieval, and document ingestion, backed by Postgres, an
// on-disk vector index, and a pluggable job queue.
package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"docintel/cmd/docintel/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("docintel")
		os.Exit(1)
	}
}
