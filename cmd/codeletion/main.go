// Copyright (C) The TCGA-Codeletion Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package main

import (
	codeletion "github.com/TrevorZandi/TCGA-Codeletion"
)

func main() {
	codeletion.Main()
}
