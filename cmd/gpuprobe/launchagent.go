package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/benaskins/gpuprobe/internal/config"
)

const launchAgentLabel = "com.gpuprobe.serve"

// launchAgent describes the per-user launchd job that keeps `gpuprobe serve`
// running.
type launchAgent struct {
	Label   string
	Program []string
	LogPath string
}

var plistTemplate = template.Must(template.New("plist").Funcs(template.FuncMap{
	"xml": template.HTMLEscapeString,
}).Parse(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{xml .Label}}</string>
    <key>ProgramArguments</key>
    <array>
{{- range .Program}}
        <string>{{xml .}}</string>
{{- end}}
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <true/>
    <key>ProcessType</key>
    <string>Background</string>
    <key>StandardOutPath</key>
    <string>{{xml .LogPath}}</string>
    <key>StandardErrorPath</key>
    <string>{{xml .LogPath}}</string>
</dict>
</plist>
`))

// newLaunchAgent builds the job for the running binary. A --config flag given
// to install is passed on to serve as an absolute path.
func newLaunchAgent() (launchAgent, error) {
	binary, err := os.Executable()
	if err != nil {
		return launchAgent{}, fmt.Errorf("finding binary path: %w", err)
	}
	binary, err = filepath.EvalSymlinks(binary)
	if err != nil {
		return launchAgent{}, fmt.Errorf("resolving binary path: %w", err)
	}

	home, err := config.Home()
	if err != nil {
		return launchAgent{}, fmt.Errorf("finding gpuprobe home: %w", err)
	}

	program := []string{binary, "serve"}
	if configPath != "" {
		abs, err := filepath.Abs(configPath)
		if err != nil {
			return launchAgent{}, fmt.Errorf("resolving config path: %w", err)
		}
		program = append(program, "--config", abs)
	}

	return launchAgent{
		Label:   launchAgentLabel,
		Program: program,
		LogPath: filepath.Join(home, "serve.log"),
	}, nil
}

func (a launchAgent) plist() ([]byte, error) {
	var buf bytes.Buffer
	if err := plistTemplate.Execute(&buf, a); err != nil {
		return nil, fmt.Errorf("rendering plist: %w", err)
	}
	return buf.Bytes(), nil
}

// plistPath is where launchd looks for per-user agents.
func (a launchAgent) plistPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home dir: %w", err)
	}
	return filepath.Join(home, "Library", "LaunchAgents", a.Label+".plist"), nil
}

// printPlist writes the job definition to stdout without installing it.
func printPlist() error {
	agent, err := newLaunchAgent()
	if err != nil {
		return err
	}
	data, err := agent.plist()
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}
