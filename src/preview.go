package main

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"unicode/utf8"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"golang.org/x/image/draw"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// character ramp from http://paulbourke.net/dataformats/asciiart/
var asciiRamp = "$@B%8&WM#*oahkbdpqwmZO0QLCJUYXzcvunxrjft/\\|()1{}[]?-_+~<>i!lI;:,\"^`'."

func reverse(s string) string {
	o := make([]rune, utf8.RuneCountInString(s))
	i := len(o)
	for _, c := range s {
		i--
		o[i] = c
	}
	return string(o)
}

// complement2 computes the 2-complement of a number
func complement2(x uint16) int16 {
	return int16(^x) + 1
}

func grayValue(img image.Image, x int, y int) int64 {
	g := color.Gray16Model.Convert(img.At(x, y)).(color.Gray16)
	return int64(g.Y)
}

// printImage2ASCII renders img as ASCII art. Intensities are windowed at
// the 2% and 98% points of the histogram, pixels at the padding value
// become spaces.
func printImage2ASCII(img image.Image, w int, h int, photometricInterpretation string, pixelPaddingValue int) []byte {
	table := []byte(reverse(asciiRamp))
	if photometricInterpretation == "MONOCHROME1" { // only valid if samples per pixel is 1
		table = []byte(asciiRamp)
	}

	minVal := grayValue(img, 0, 0)
	maxVal := minVal
	for i := 0; i < h; i++ {
		for j := 0; j < w; j++ {
			y := grayValue(img, j, i)
			if pixelPaddingValue != 0 && y == int64(pixelPaddingValue) {
				continue
			}
			if y > maxVal {
				maxVal = y
			}
			if y < minVal {
				minVal = y
			}
		}
	}
	span := maxVal - minVal
	if span == 0 {
		span = 1
	}
	var histogram [1024]int64
	bins := len(histogram)
	var total int64
	for i := 0; i < h; i++ {
		for j := 0; j < w; j++ {
			y := grayValue(img, j, i)
			if pixelPaddingValue != 0 && y == int64(pixelPaddingValue) {
				continue
			}
			idx := int((y - minVal) * int64(bins-1) / span)
			histogram[idx]++
			total++
		}
	}
	percentile := func(fraction float64) int64 {
		var s int64
		for i := 0; i < bins; i++ {
			s += histogram[i]
			if float64(s) >= fraction*float64(total) {
				return minVal + int64(float64(i)/float64(bins)*float64(span))
			}
		}
		return maxVal
	}
	min2 := percentile(0.02)
	max98 := percentile(0.98)
	denom := max98 - min2
	if denom == 0 {
		denom = 1
	}

	buf := new(bytes.Buffer)
	for i := 0; i < h; i++ {
		for j := 0; j < w; j++ {
			y := grayValue(img, j, i)
			if pixelPaddingValue != 0 && y == int64(pixelPaddingValue) {
				_ = buf.WriteByte(' ')
				continue
			}
			pos := int((float64(y) - float64(min2)) * float64(len(table)-1) / float64(denom))
			pos = int(math.Min(float64(len(table)-1), math.Max(0, float64(pos))))
			_ = buf.WriteByte(table[pos])
		}
		_ = buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// showDataset writes every frame of the dataset's pixel data as ASCII art
// to w, scaled for a terminal. With clip only the central region of each
// frame is shown which helps with the small hippocampal field of view.
func showDataset(dataset dicom.Dataset, counter int, path string, info string, w io.Writer, clip bool) {
	pixelDataElement, err := dataset.FindElementByTag(tag.PixelData)
	if err != nil {
		return
	}
	var pixelRepresentation int = 0
	if el, err := dataset.FindElementByTag(tag.PixelRepresentation); err == nil {
		pixelRepresentation = dicom.MustGetInts(el.Value)[0]
	}
	var photometricInterpretation string = "MONOCHROME2"
	if el, err := dataset.FindElementByTag(tag.PhotometricInterpretation); err == nil {
		photometricInterpretation = dicom.MustGetStrings(el.Value)[0]
	}
	// defined on the original data, before the 2-complement
	var pixelPaddingValue int = 0
	if el, err := dataset.FindElementByTag(tag.PixelPaddingValue); err == nil {
		pixelPaddingValue = dicom.MustGetInts(el.Value)[0]
	}

	langFmt := message.NewPrinter(language.English)
	pixelDataInfo := dicom.MustGetPixelDataInfo(pixelDataElement.Value)
	for _, fr := range pixelDataInfo.Frames {
		var img image.Image
		if pixelRepresentation == 1 {
			// signed data, shift into the positive range because GetImage
			// converts everything to uint16
			native_img, err := fr.GetNativeFrame()
			if err != nil {
				continue
			}
			if pixelPaddingValue != 0 {
				// not reliable, GE for example uses other values
				currValue := uint16(native_img.Data[0][0])
				pixelPaddingValue = int(32768) + int(complement2(currValue))
			} else {
				pixelPaddingValue += int(32768)
			}
			for i := 0; i < native_img.Rows; i++ {
				for j := 0; j < native_img.Cols; j++ {
					currValue := uint16(native_img.Data[i*native_img.Cols+j][0])
					native_img.Data[i*native_img.Cols+j][0] = 32768 + int(complement2(currValue))
				}
			}
			img, err = native_img.GetImage()
			if err != nil {
				continue
			}
		} else {
			img, err = fr.GetImage()
			if err != nil {
				continue
			}
		}

		origbounds := img.Bounds()
		origWidth, origHeight := origbounds.Max.X, origbounds.Max.Y
		srcbounds := origbounds
		if clip {
			dx, dy := origbounds.Dx()/6, origbounds.Dy()/6
			srcbounds = image.Rect(origbounds.Min.X+dx, origbounds.Min.Y+dy, origbounds.Max.X-dx, origbounds.Max.Y-dy)
		}
		width := 196 / 2
		height := int(math.Round(196.0 / 2.0 / (80.0 / 30.0)))
		newImage := image.NewGray16(image.Rect(0, 0, width, height))
		draw.ApproxBiLinear.Scale(newImage, newImage.Bounds(), img, srcbounds, draw.Over, nil)

		p := printImage2ASCII(newImage, width, height, photometricInterpretation, pixelPaddingValue)
		fmt.Fprintf(w, "%s", string(p))
		langFmt.Fprintf(w, "\033[2K[%d] %s (%dx%d)\n", counter+1, path, origWidth, origHeight)
		if len(info) > 0 {
			langFmt.Fprintf(w, "\033[2K%s\n", info)
		}
	}
}
