// rastertool inspects the packed classification and height rasters served
// for a study area.
package main

import (
	"flag"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strconv"

	"github.com/Faultbox/landsim-viewer/internal/engine/texture"
	"github.com/Faultbox/landsim-viewer/internal/instancing"
	"github.com/Faultbox/landsim-viewer/internal/occupancy"
	"github.com/Faultbox/landsim-viewer/internal/raster"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "classes":
		err = cmdClasses(os.Stdout, args)
	case "heights":
		err = cmdHeights(os.Stdout, args)
	case "cell":
		err = cmdCell(os.Stdout, args)
	case "occupancy", "occ":
		err = cmdOccupancy(os.Stdout, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`rastertool - study-area raster utility

Usage:
  rastertool <command> [options]

Commands:
  classes <veg.png> [-top n]               Histogram of packed class values
  heights <elev.png>                       Height range of a packed heightmap
  cell <veg.png> <x> <y>                   Packed value and pixel bytes of one cell
  occupancy <veg.png> <class> [-stride k] [-list] [-seed n]
                                           Cells a vegetation type would fill

Examples:
  rastertool classes veg.png -top 10
  rastertool heights elev.png
  rastertool cell veg.png 10 20
  rastertool occupancy veg.png 7 -stride 4 -list`)
}

func loadTexture(path string) (*texture.Texture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return texture.Decode(path, data)
}

func loadRaster(path string) (*raster.Raster, error) {
	tex, err := loadTexture(path)
	if err != nil {
		return nil, err
	}
	return raster.FromTexture(tex)
}

func cmdClasses(w io.Writer, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: rastertool classes <veg.png> [-top n]")
	}
	fs := flag.NewFlagSet("classes", flag.ContinueOnError)
	top := fs.Int("top", 0, "Show only the n most common classes")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	r, err := loadRaster(args[0])
	if err != nil {
		return err
	}

	hist := r.Histogram()
	fmt.Fprintf(w, "Raster: %s (%dx%d, %d cells)\n", args[0], r.Width, r.Height, r.Len())
	fmt.Fprintf(w, "Classes: %d\n\n", len(hist))
	if *top > 0 && *top < len(hist) {
		hist = hist[:*top]
	}
	for _, c := range hist {
		fmt.Fprintf(w, "  %8d  %8d  %6.2f%%\n", c.Class, c.Cells, 100*float64(c.Cells)/float64(r.Len()))
	}
	return nil
}

func cmdHeights(w io.Writer, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: rastertool heights <elev.png>")
	}
	tex, err := loadTexture(args[0])
	if err != nil {
		return err
	}
	heights, err := raster.HeightsFromTexture(tex)
	if err != nil {
		return err
	}

	lo, hi := heights[0], heights[0]
	var sum float64
	for _, h := range heights {
		lo = min(lo, h)
		hi = max(hi, h)
		sum += float64(h)
	}
	fmt.Fprintf(w, "Heightmap: %s (%dx%d)\n", args[0], tex.Width, tex.Height)
	fmt.Fprintf(w, "  Min:  %.1f\n", lo)
	fmt.Fprintf(w, "  Max:  %.1f\n", hi)
	fmt.Fprintf(w, "  Mean: %.1f\n", sum/float64(len(heights)))
	return nil
}

func cmdCell(w io.Writer, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: rastertool cell <veg.png> <x> <y>")
	}
	x, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid x %q: %w", args[1], err)
	}
	y, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("invalid y %q: %w", args[2], err)
	}

	r, err := loadRaster(args[0])
	if err != nil {
		return err
	}
	if x < 0 || y < 0 || x >= r.Width || y >= r.Height {
		return fmt.Errorf("cell (%d,%d) outside %dx%d raster", x, y, r.Width, r.Height)
	}
	v := r.At(x, y)
	px := raster.Encode(v)
	fmt.Fprintf(w, "Cell (%d,%d): %d  rgba(%d,%d,%d,%d)\n", x, y, v, px[0], px[1], px[2], px[3])
	return nil
}

func cmdOccupancy(w io.Writer, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: rastertool occupancy <veg.png> <class> [-stride k]")
	}
	class, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid class %q: %w", args[1], err)
	}
	fs := flag.NewFlagSet("occupancy", flag.ContinueOnError)
	stride := fs.Int("stride", 1, "Placement mask stride")
	list := fs.Bool("list", false, "List instance offsets, uvs and rotations")
	seed := fs.Uint64("seed", 1, "Seed for instance rotations")
	if err := fs.Parse(args[2:]); err != nil {
		return err
	}

	r, err := loadRaster(args[0])
	if err != nil {
		return err
	}
	mask := occupancy.MaskWithStride(r, *stride)
	m, err := occupancy.Positions(uint32(class), mask, r, r.Width, r.Height)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Class %d with stride %d: %d instances\n", class, mask.Stride, m.Count())
	if !*list {
		return nil
	}

	attrs, err := instancing.NewBuilder(rand.New(rand.NewPCG(*seed, *seed))).Build(m)
	if err != nil {
		return err
	}
	for i := range attrs.Len() {
		x, y := attrs.Offset(i)
		u, v := attrs.UV(i)
		fmt.Fprintf(w, "  %5d  offset(%.1f, %.1f)  uv(%.4f, %.4f)  rot %.3f\n", i, x, y, u, v, attrs.Rotation(i))
	}
	return nil
}
