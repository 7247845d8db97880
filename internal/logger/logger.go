package logger

import (
	"encoding/json"
	"log"
	"os"
)

func Init() {
	log.SetOutput(os.Stdout)
	log.SetFlags(0)
	log.Printf(`{"level":"INFO","msg":"logger initialized"}`)
}

func encode(fields map[string]any) string {
	if fields == nil {
		return "{}"
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func Info(msg string, fields map[string]any) {
	log.Printf(`{"level":"INFO","msg":%q,"fields":%s}`, msg, encode(fields))
}

func Error(msg string, fields map[string]any) {
	log.Printf(`{"level":"ERROR","msg":%q,"fields":%s}`, msg, encode(fields))
}

func Fatal(msg string, fields map[string]any) {
	log.Printf(`{"level":"FATAL","msg":%q,"fields":%s}`, msg, encode(fields))
	os.Exit(1)
}
