package main

import "github.com/nextlevelbuilder/adrelay/cmd"

func main() {
	cmd.Execute()
}
