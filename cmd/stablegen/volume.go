package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v7"
	"github.com/vbauerster/mpb/v7/decor"

	"github.com/stablegen/gateway/internal/config"
)

var volumeCmd = &cobra.Command{
	Use:   "volume",
	Short: "Manage the model volume shared with the GPU worker",
}

func init() {
	uploadCmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Copy model weights into the models directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")
			dest, copied, err := uploadToVolume(args[0], config.MustGetConfig().ModelsDir, force)
			if err != nil {
				return err
			}

			if !copied {
				color.Yellow("%s already exists, use --force to overwrite", dest)
				return nil
			}
			color.Green("uploaded %s", dest)
			return nil
		},
	}
	uploadCmd.Flags().Bool("force", false, "Overwrite the file if it already exists")

	volumeCmd.AddCommand(uploadCmd)
}

// uploadToVolume copies src into modelsDir and reports whether anything was
// written. Existing files are left alone unless force is set.
func uploadToVolume(src, modelsDir string, force bool) (string, bool, error) {
	dest := filepath.Join(modelsDir, filepath.Base(src))
	if _, err := os.Stat(dest); err == nil && !force {
		return dest, false, nil
	}

	in, err := os.Open(src)
	if err != nil {
		return dest, false, err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return dest, false, err
	}
	if info.IsDir() {
		return dest, false, fmt.Errorf("%s is a directory", src)
	}

	if err := os.MkdirAll(modelsDir, os.ModePerm); err != nil {
		return dest, false, fmt.Errorf("failed to create models directory: %w", err)
	}

	// write next to the destination so a failed copy never leaves a partial file
	tmp := dest + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return dest, false, err
	}

	progress := mpb.New(
		mpb.WithWidth(60),
		mpb.WithRefreshRate(180*time.Millisecond),
	)
	bar := progress.AddBar(info.Size(),
		mpb.PrependDecorators(
			decor.Name(filepath.Base(dest), decor.WC{W: 40, C: decor.DidentRight}),
			decor.CountersKibiByte("% .2f / % .2f"),
		),
		mpb.AppendDecorators(
			decor.EwmaETA(decor.ET_STYLE_GO, 90),
			decor.Name(" ] "),
			decor.EwmaSpeed(decor.UnitKiB, "% .2f", 60),
		),
	)

	reader := bar.ProxyReader(in)
	_, copyErr := io.Copy(out, reader)
	reader.Close()
	if copyErr != nil {
		bar.Abort(false)
	} else {
		// completes the bar for empty files too
		bar.SetTotal(-1, true)
	}
	progress.Wait()

	if err := out.Close(); err != nil && copyErr == nil {
		copyErr = err
	}
	if copyErr != nil {
		os.Remove(tmp)
		return dest, false, fmt.Errorf("failed to copy %s: %w", src, copyErr)
	}

	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return dest, false, err
	}

	return dest, true, nil
}
