package main

import (
	"fmt"
	"os"
	"os/exec"
)

var services = []string{"mysql", "redis", "kafka"}

func main() {
	fmt.Println("Setting up QR ordering development environment")

	if err := checkDocker(); err != nil {
		fmt.Printf("Docker issue detected: %v\n", err)
		fmt.Println("You can still run without Kafka: KAFKA_MOCK_MODE=true go run .")
		os.Exit(1)
	}
	fmt.Println("Docker is running")

	fmt.Printf("Starting %v...\n", services)
	cmd := exec.Command("docker", append([]string{"compose", "up", "-d"}, services...)...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		fmt.Printf("Failed to start services: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Services started. Next:")
	fmt.Println("  go run ./cmd/migrate")
	fmt.Println("  go run .")
}

func checkDocker() error {
	return exec.Command("docker", "info").Run()
}
