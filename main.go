package main

import "github.com/consulthub/consulthub-api/cmd"

func main() {
	cmd.Execute()
}
