package main

import "github.com/cuongbtq/claims-pipeline/internal/cli"

func main() {
	cli.Execute()
}
