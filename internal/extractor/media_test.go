package extractor

import (
	"fmt"
	"strings"
	"testing"
)

func TestDedupeMedia(t *testing.T) {
	urls := []string{
		"https://images.prismic.io/carwow/a.jpg?w=800",
		"HTTPS://Images.Prismic.io/carwow/a.jpg?w=400#top",
		"http://images.prismic.io/carwow/a.jpg",
		"https://images.prismic.io/carwow/b.jpg",
		"",
	}
	got := DedupeMedia(urls, 0)
	if len(got) != 2 {
		t.Fatalf("got %v, want two distinct images", got)
	}
	if got[0] != urls[0] {
		t.Fatalf("first occurrence must be kept, got %q", got[0])
	}
}

func TestDedupeMediaCap(t *testing.T) {
	var urls []string
	for i := 0; i < 60; i++ {
		urls = append(urls, fmt.Sprintf("https://images.prismic.io/carwow/%d.jpg", i))
	}
	got := DedupeMedia(urls, 40)
	if len(got) != 40 {
		t.Fatalf("len = %d, want cap of 40", len(got))
	}
	if got[39] != urls[39] {
		t.Fatalf("cap must keep document order, last = %q", got[39])
	}
}

func TestMediaExtractorGalleryFirst(t *testing.T) {
	page := mustPage(t, `<html><body>
		<div class="media-gallery">
			<img src="https://images.prismic.io/carwow/1.jpg">
			<img data-src="//images.prismic.io/carwow/2.jpg" src="data:image/gif;base64,R0lGOD">
			<img src="/assets/3.jpg">
		</div>
		<img src="https://ads.example.com/banner.jpg">
	</body></html>`)

	m := MediaExtractor{Max: 40, MinGallery: 3, Hosts: []string{"prismic.io", "carwow"}}
	res, ok := m.Extract(page)
	if !ok {
		t.Fatal("want media")
	}
	want := []string{
		"https://images.prismic.io/carwow/1.jpg",
		"https://images.prismic.io/carwow/2.jpg",
		"https://www.carwow.co.uk/assets/3.jpg",
	}
	if strings.Join(res.Value, " ") != strings.Join(want, " ") {
		t.Fatalf("got %v, want %v", res.Value, want)
	}
	if res.Provenance != "gallery_markup" {
		t.Fatalf("a full gallery must not trigger the image scan, provenance = %q", res.Provenance)
	}
}

func TestMediaExtractorScanFiltersHosts(t *testing.T) {
	page := mustPage(t, `<html><body>
		<div class="gallery"><img src="https://images.prismic.io/carwow/hero.jpg"></div>
		<img src="https://images.prismic.io/carwow/hero.jpg?w=300">
		<img src="https://carwow.imgix.net/side.jpg">
		<img src="https://tracker.example.com/pixel.gif">
		<img src="ftp://images.prismic.io/x.jpg">
	</body></html>`)

	m := MediaExtractor{Max: 40, MinGallery: 3, Hosts: []string{"prismic.io", "imgix.net"}}
	res, ok := m.Extract(page)
	if !ok {
		t.Fatal("want media")
	}
	if len(res.Value) != 2 {
		t.Fatalf("got %v, want hero and side only", res.Value)
	}
	if res.Provenance != "gallery_markup+img_scan" {
		t.Fatalf("provenance = %q", res.Provenance)
	}
}

func TestMediaExtractorNone(t *testing.T) {
	page := mustPage(t, `<html><body><p>no images</p></body></html>`)
	if res, ok := (MediaExtractor{Max: 40, MinGallery: 3}).Extract(page); ok {
		t.Fatalf("want no media, got %v", res.Value)
	}
}
