package main

import "github.com/dbsmedya/entityplan/cmd/entityplan/cmd"

func main() {
	cmd.Execute()
}
