package main

import "github.com/draftsmith-eda/draftsmith/cmd/draftsmith/cmd"

func main() {
	cmd.Execute()
}
