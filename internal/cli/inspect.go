package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	animimage "animaframe/internal/image"
	"animaframe/internal/perf"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <image>",
	Short: "Print a container's frame layout without rendering it",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(_ *cobra.Command, args []string) error {
	path := args[0]

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	img, err := animimage.Open(f)
	if err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	defer img.Close()

	bounds := img.Size()
	fmt.Printf("kind:        %s\n", img.Kind())
	fmt.Printf("size:        %dx%d\n", bounds.Dx(), bounds.Dy())
	fmt.Printf("frames:      %d\n", img.FrameCount())
	fmt.Printf("poster:      %d\n", img.PosterIndex())
	fmt.Printf("loop count:  %s\n", loopCountString(img.LoopCount()))

	var total float64
	for i := 0; i < img.FrameCount(); i++ {
		total += img.Delay(i).Seconds()
	}
	fmt.Printf("duration:    %.3fs (one loop)\n", total)
	fmt.Printf("cache tier window: %d frames\n", img.CapacityCurrent())
	fmt.Printf("predraw slowdown:  %.1fx\n", img.PredrawSlowdownFactor())
	fmt.Printf("host memory pressure: %s\n", perf.CurrentPressure())

	return nil
}

func loopCountString(n int) string {
	if n == 0 {
		return "infinite"
	}
	return fmt.Sprintf("%d", n)
}
