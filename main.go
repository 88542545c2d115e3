package main

import (
	cmd "github.com/sulaimonao/selfhostedsearch/internal/cli"
)

func main() {
	cmd.Execute()
}
