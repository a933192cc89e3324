package main

import (
	"log"
	"net/http"
	"os"

	"github.com/Krimson/eda-forensics/forge/stubs"
)

// labstub поднимает HTTP-заглушку ML бэкенда для локального запуска монитора и лаборатории
func main() {
	addr := os.Getenv("LAB_STUB_ADDR")
	if addr == "" {
		addr = ":8000"
	}

	log.Printf("[INFO] Lab stub listening at %s", addr)
	log.Printf("[INFO]   POST /analyze, POST /benchmark, POST /log_telemetry, GET /download_csv")

	if err := http.ListenAndServe(addr, stubs.NewLabStub()); err != nil {
		log.Fatalf("[FATAL] Failed to serve lab stub: %v", err)
	}
}
