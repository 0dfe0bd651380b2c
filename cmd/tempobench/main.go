// Command tempobench прогоняет WAV файлы через несколько движков растяжения
// и сравнивает их по времени и пропускной способности.
package main

import "github.com/artemshloyda/tempobench/internal/cli"

func main() {
	cli.Execute()
}
