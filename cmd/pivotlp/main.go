package main

import (
	"pivotlp/cmd/handlers"
	"pivotlp/internal/logger"
)

func main() {
	logger.Init() // Initialize the logger
	handlers.Execute()
}
