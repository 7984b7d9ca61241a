package main

import (
	"os"

	"stockchat/backend/internal/app"
)

// @title           StockChat API
// @version         1.0
// @description     Streaming stock-market assistant with market data and chart tools.
// @host            localhost:8888
// @BasePath        /api
func main() {
	os.Exit(app.Run())
}
