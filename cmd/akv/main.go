/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/ssargent/actionkv/cmd/akv/cmd"

func main() {
	cmd.Execute()
}
