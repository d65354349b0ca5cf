package main

import "github.com/macmann/mealmebase/cmd"

func main() {
	cmd.Execute()
}
