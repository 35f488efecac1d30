// Command blogman はブログの公開サイトと管理画面を提供するサーバー。
//
// サブコマンド: serve（既定）, worker, migrate, seed, signup, routes, healthcheck
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/blogman/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
