// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/embedcli/embedcli/cmd/embedcli"

func main() {
	cmd.Execute()
}
