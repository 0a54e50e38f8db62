package main

import (
	"log"

	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/services/rewardd"
)

func main() {
	if err := rewardd.Main(); err != nil {
		log.Fatalf("rewardd: %v", err)
	}
}
