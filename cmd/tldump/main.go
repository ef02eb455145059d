// Command tldump is the offline inspector for the translation-cache
// dump: it reads the single binary dump file written by
// internal/cache.Dump and prints one line per translation record.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/zhangjiayin/hiphop-php-sub000/internal/cache"
)

// newRootCmd builds tldump's single command. fs is injected so tests
// can point it at an afero.NewMemMapFs() dump instead of a real file,
// mirroring k6's own afero.Fs-as-a-parameter idiom (cmd/common.go's
// readSource).
func newRootCmd(fs afero.Fs) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tldump <dump-file>",
		Short: "Inspect a translation-cache dump",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return dumpFile(cmd, fs, args[0])
		},
	}
	return cmd
}

func dumpFile(cmd *cobra.Command, fs afero.Fs, path string) error {
	f, err := fs.Open(path)
	if err != nil {
		return fmt.Errorf("tldump: opening %s: %w", path, err)
	}
	defer f.Close()

	recs, err := cache.Load(f)
	if err != nil {
		return fmt.Errorf("tldump: reading %s: %w", path, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d translation(s)\n", len(recs))
	for _, r := range recs {
		fmt.Fprintf(out, "%s\tstack-ceil=%d\tcode-bytes=%d\n", r.Key.String(), r.StackPointerCeil, r.CodeLength)
	}
	return nil
}

func main() {
	if err := newRootCmd(afero.NewOsFs()).Execute(); err != nil {
		os.Exit(1)
	}
}
