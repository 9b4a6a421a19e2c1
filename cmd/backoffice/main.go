// Command backoffice serves the back office sign-in API.
package main

//go:generate swag init -g ../../internal/auth/http/router.go -o ../../api/backoffice --parseDependency

import (
	"flag"
	"fmt"
	"log"

	"github.com/jewelbox/backoffice/internal/auth/app"
	"github.com/jewelbox/backoffice/pkg/cryptox"
)

func main() {
	genSecret := flag.Bool("gen-secret", false, "print a random value for AUTH_JWT_SECRET or BOOTSTRAP_TOKEN and exit")
	flag.Parse()

	if *genSecret {
		secret, err := cryptox.GenerateToken(cryptox.TokenSize256)
		if err != nil {
			log.Fatalf("failed to generate secret: %v", err)
		}
		fmt.Println(secret)
		return
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}
