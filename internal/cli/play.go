package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"animaframe/internal/app"
	"animaframe/internal/config"
	"animaframe/internal/debug"
	animimage "animaframe/internal/image"
)

var (
	flagCapacityMax int
	flagTitle       string
	flagRate        float64
	flagScaler      string
	flagDebug       bool
)

var playCmd = &cobra.Command{
	Use:   "play <image>",
	Short: "Play an animated GIF or WebP image in a window",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlay,
}

func init() {
	playCmd.Flags().IntVar(&flagCapacityMax, "capacity-max", 0, "cap the frame cache window regardless of size tier (0: use ANIMAFRAME_CAPACITY_MAX, no cap if that is unset)")
	playCmd.Flags().StringVarP(&flagTitle, "title", "t", "", "window title (default: the file name)")
	playCmd.Flags().Float64Var(&flagRate, "rate", 1.0, "initial playback rate multiplier")
	playCmd.Flags().StringVar(&flagScaler, "scaler", "catmullrom", "resize interpolation: catmullrom, bilinear, approxbilinear, nearestneighbor")
	playCmd.Flags().BoolVar(&flagDebug, "debug", false, "log cache events and periodic memory snapshots to stderr")
	rootCmd.AddCommand(playCmd)
}

func runPlay(_ *cobra.Command, args []string) error {
	path := args[0]
	cfg := config.Load()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	opts := []animimage.Option{}
	capMax := flagCapacityMax
	if capMax == 0 {
		capMax = cfg.CapacityMax
	}
	if capMax > 0 {
		opts = append(opts, animimage.WithCapacityMax(capMax))
	}
	if flagDebug {
		opts = append(opts, animimage.WithDelegate(debug.Logger{Prefix: path + ": "}))
		app.Verbose = true
	}

	img, err := animimage.Open(f, opts...)
	if err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	title := flagTitle
	if title == "" {
		title = path
	}

	rt, err := app.New(img, title, cfg.TargetFPS)
	if err != nil {
		img.Close()
		return err
	}
	defer rt.Close()

	rt.SetPlaybackRate(flagRate)
	rt.SetScaler(app.ParseScaler(flagScaler))
	return rt.Run()
}
