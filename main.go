package main

import (
	"log"

	"github.com/bidworks/rfp-qualifier/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
