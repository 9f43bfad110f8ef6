package main

import (
	"flag"
	"fmt"
	"log"
)

// BuildVersion is stamped by the release workflow via -ldflags.
var BuildVersion = "dev"

func main() {
	conf := flag.String("config", "", "path to config file or http(s) url, empty for defaults")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println(BuildVersion)
		return
	}

	config, err := loadConfig(*conf)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := startServer(config); err != nil {
		log.Fatalf("Server exited with error: %v", err)
	}
}
