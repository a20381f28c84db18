package main

import (
	"flag"

	"github.com/joho/godotenv"

	"github.com/petterhj/yt-dvr/cmd"
	"github.com/petterhj/yt-dvr/config"
)

func main() {
	godotenv.Load()
	cfg := config.Load()

	var port int
	flag.IntVar(&port, "port", cfg.Port, "Port for the HTTP server")
	flag.Parse()
	cfg.Port = port

	cmd.StartServer(cfg)
}
