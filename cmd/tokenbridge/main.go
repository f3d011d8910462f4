package main

import (
	"log"

	"github.com/aussiebroadwan/tokenbridge/internal/bridge/app"
)

//	@title			Token Bridge
//	@version		0.1
//	@description	RFC 8693 token exchange in front of Ory Hydra.
//	@BasePath		/

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("%v", err)
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}
