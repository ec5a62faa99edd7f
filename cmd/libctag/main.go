/*
Copyright 2024 Google LLC

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"fmt"
	"os"

	"github.com/Gosayram/libctag/cmd/libctag/cmd"
	"github.com/Gosayram/libctag/internal/version"
)

func main() {
	// Handle --version before cobra initialization
	for _, arg := range os.Args[1:] {
		if arg == "--version" {
			fmt.Println("libctag")
			fmt.Println(version.Info())
			os.Exit(0)
		}
	}

	if err := cmd.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
