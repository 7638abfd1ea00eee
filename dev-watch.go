//go:build ignore

package main

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const binary = "./qr-ordering"

func main() {
	fmt.Println("QR ordering hot reload")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Fatal(err)
	}
	defer watcher.Close()

	err = filepath.WalkDir(".", func(path string, d os.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return err
		}
		if strings.HasPrefix(d.Name(), "_") || (d.Name() != "." && strings.HasPrefix(d.Name(), ".")) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
	if err != nil {
		log.Fatal(err)
	}

	var cmd *exec.Cmd
	restart := make(chan bool, 1)
	go startApp(&cmd, restart)
	restart <- true

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, ".go") || strings.HasSuffix(event.Name, "_test.go") {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			fmt.Printf("Changed: %s, restarting\n", event.Name)
			if cmd != nil && cmd.Process != nil {
				_ = cmd.Process.Kill()
			}
			time.Sleep(500 * time.Millisecond)
			restart <- true

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Println("Error:", err)
		}
	}
}

func startApp(cmd **exec.Cmd, restart <-chan bool) {
	for range restart {
		build := exec.Command("go", "build", "-o", binary, ".")
		build.Stdout = os.Stdout
		build.Stderr = os.Stderr
		if err := build.Run(); err != nil {
			fmt.Printf("Build failed: %v\n", err)
			continue
		}

		*cmd = exec.Command(binary)
		(*cmd).Stdout = os.Stdout
		(*cmd).Stderr = os.Stderr
		if err := (*cmd).Start(); err != nil {
			fmt.Printf("Failed to start: %v\n", err)
			continue
		}
		go func(c *exec.Cmd) { _ = c.Wait() }(*cmd)
	}
}
