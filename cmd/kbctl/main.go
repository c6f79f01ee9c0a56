// Package main 是知识库维护工具 kbctl 的入口。
package main

import (
	"os"

	"consultor-ia-go/pkg/log"
)

func main() {
	defer log.Sync()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
