// cmd/tools/catalogue-export/main.go
//
// Exports the built-in capability catalogue to JSON so external tools and
// decision-service prompts can be kept in sync with the deployed registry.
package main

import (
	"flag"
	"fmt"
	"os"

	"analytics-orchestrator/internal/capabilities/chat"
	"analytics-orchestrator/internal/capabilities/eventanalysis"
	"analytics-orchestrator/internal/capabilities/eventsearch"
	"analytics-orchestrator/internal/capabilities/help"
	"analytics-orchestrator/internal/capabilities/notify"
	"analytics-orchestrator/internal/capabilities/ticketingdata"
	"analytics-orchestrator/internal/capability"
	"analytics-orchestrator/internal/common/logger"
	"analytics-orchestrator/pkg/catalogue"
)

func main() {
	outPath := flag.String("out", "configs/capability-catalogue.json", "Output path for the catalogue file")
	version := flag.String("version", "1.0.0", "Catalogue version")
	flag.Parse()

	log := logger.NewNoOpLogger()
	registry := capability.NewRegistry()

	// Descriptors only; no live clients are needed for an export.
	capabilities := []capability.Capability{
		chat.New(chat.Config{}, log),
		eventanalysis.New(eventanalysis.Config{}, log),
		ticketingdata.New(ticketingdata.Config{}, log),
		eventsearch.New(eventsearch.Config{}, nil, log),
		notify.New(notify.Config{}, nil, nil, log),
		help.New(registry),
	}
	for _, c := range capabilities {
		if err := registry.Register(c); err != nil {
			fmt.Fprintf(os.Stderr, "register %s: %v\n", c.Describe().Name, err)
			os.Exit(1)
		}
	}

	cat := catalogue.FromRegistry(registry, *version)
	if err := catalogue.Save(*outPath, cat); err != nil {
		fmt.Fprintf(os.Stderr, "write catalogue: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Wrote %d capabilities to %s\n", len(cat.Capabilities), *outPath)
}
