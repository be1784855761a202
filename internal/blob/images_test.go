package blob

import (
	"context"
	"strings"
	"testing"

	infraS3 "fungiatlas/internal/infra/blob/s3"
)

func TestImageKey(t *testing.T) {
	if got := ImageKey("Amanita Pantherina", "../../cap.jpg"); got != "images/amanita-pantherina/cap.jpg" {
		t.Fatalf("unexpected key %s", got)
	}
}

func TestImageLinksWithoutSigning(t *testing.T) {
	ctx := context.Background()
	links := NewImageLinks(NewMemory(), 0)
	info, err := links.PutImage(ctx, "amanita-pantherina", "cap.jpg", strings.NewReader("jpeg"), "image/jpeg")
	if err != nil {
		t.Fatalf("put image: %v", err)
	}
	if info.Metadata["species-id"] != "amanita-pantherina" {
		t.Fatalf("expected species metadata, got %+v", info.Metadata)
	}
	got, err := links.ImageURLs(ctx, []string{"images/amanita-pantherina/bulb.jpg", info.Key})
	if err != nil {
		t.Fatalf("image urls: %v", err)
	}
	if len(got) != 1 || got[0] != info.Key {
		t.Fatalf("expected missing image skipped and raw key returned, got %v", got)
	}
}

func TestImageLinksFilesystemAndS3(t *testing.T) {
	ctx := context.Background()
	fsStore, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("fs store: %v", err)
	}
	for name, store := range map[string]Store{"fs": fsStore, "s3": infraS3.NewMockForTests()} {
		links := NewImageLinks(store, 0)
		info, err := links.PutImage(ctx, "psilocybe-semilanceata", "cap.jpg", strings.NewReader("jpeg"), "image/jpeg")
		if err != nil {
			t.Fatalf("%s put image: %v", name, err)
		}
		got, err := links.ImageURLs(ctx, []string{info.Key})
		if err != nil {
			t.Fatalf("%s image urls: %v", name, err)
		}
		if len(got) != 1 || !strings.Contains(got[0], "images/psilocybe-semilanceata/cap.jpg") || got[0] == info.Key {
			t.Fatalf("%s: expected a link for %s, got %v", name, info.Key, got)
		}
	}
}

func TestSpeciesImageURLsIncludesStoredUploads(t *testing.T) {
	ctx := context.Background()
	links := NewImageLinks(NewMemory(), 0)
	if _, err := links.PutImage(ctx, "amanita-pantherina", "cap.jpg", strings.NewReader("jpeg"), "image/jpeg"); err != nil {
		t.Fatalf("put declared image: %v", err)
	}
	key, err := links.PutSpeciesImage(ctx, "amanita-pantherina", "gills.jpg", strings.NewReader("jpeg"), "image/jpeg")
	if err != nil {
		t.Fatalf("put upload: %v", err)
	}
	if key != "images/amanita-pantherina/gills.jpg" {
		t.Fatalf("unexpected key %s", key)
	}
	if _, err := links.PutSpeciesImage(ctx, "amanita-pantherina-var", "cap.jpg", strings.NewReader("jpeg"), "image/jpeg"); err != nil {
		t.Fatalf("put neighbour image: %v", err)
	}

	declared := []string{"images/amanita-pantherina/cap.jpg", "images/amanita-pantherina/bulb.jpg"}
	got, err := links.SpeciesImageURLs(ctx, "amanita-pantherina", declared)
	if err != nil {
		t.Fatalf("species image urls: %v", err)
	}
	want := []string{"images/amanita-pantherina/cap.jpg", "images/amanita-pantherina/gills.jpg"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("expected %v, got %v", want, got)
	}

	none, err := links.SpeciesImageURLs(ctx, "amanita-muscaria", nil)
	if err != nil || len(none) != 0 {
		t.Fatalf("expected no images, got %v %v", none, err)
	}
}
