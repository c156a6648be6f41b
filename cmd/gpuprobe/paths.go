package main

import (
	"path/filepath"

	"github.com/benaskins/gpuprobe/internal/config"
)

func defaultSocketPath() string {
	home, err := config.Home()
	if err != nil {
		return "/tmp/gpuprobe.sock"
	}
	return filepath.Join(home, "gpuprobe.sock")
}
