package main

import (
	"soundscene/cmd"
)

func main() {
	cmd.Execute()
}
