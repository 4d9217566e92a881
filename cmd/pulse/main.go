package main

import (
	"pulse/cmd/handlers"
	"pulse/internal/logger"
)

func main() {
	logger.Init()
	handlers.Execute()
}
