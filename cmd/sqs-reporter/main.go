package main

import (
	"log"

	"github.com/drblury/sqsreporter/cmd/sqs-reporter/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
