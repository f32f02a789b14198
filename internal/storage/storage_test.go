package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStorage(useCDN bool) *Storage {
	return &Storage{
		bucket:   "mala-assets",
		endpoint: "https://ams3.digitaloceanspaces.com",
		useCDN:   useCDN,
	}
}

func TestPublicURL(t *testing.T) {
	s := testStorage(false)
	assert.Equal(t,
		"https://mala-assets.ams3.digitaloceanspaces.com/marketplace/avatars/customer/kc-1/avatar.png",
		s.PublicURL("marketplace/avatars/customer/kc-1/avatar.png"))

	s = testStorage(true)
	assert.Equal(t,
		"https://mala-assets.ams3.cdn.digitaloceanspaces.com/marketplace/avatars/customer/kc-1/avatar.png",
		s.PublicURL("marketplace/avatars/customer/kc-1/avatar.png"))
}

func TestKeyFromURL(t *testing.T) {
	s := testStorage(true)

	key, ok := s.KeyFromURL("https://mala-assets.ams3.cdn.digitaloceanspaces.com/marketplace/salons/3/cover.jpg")
	require.True(t, ok)
	assert.Equal(t, "marketplace/salons/3/cover.jpg", key)

	// Origin URLs resolve too.
	key, ok = s.KeyFromURL("https://mala-assets.ams3.digitaloceanspaces.com/marketplace/salons/3/cover.jpg")
	require.True(t, ok)
	assert.Equal(t, "marketplace/salons/3/cover.jpg", key)

	// Foreign buckets and junk are rejected.
	_, ok = s.KeyFromURL("https://other-bucket.ams3.digitaloceanspaces.com/x.jpg")
	assert.False(t, ok)
	_, ok = s.KeyFromURL("not a url")
	assert.False(t, ok)
	_, ok = s.KeyFromURL("https://mala-assets.ams3.digitaloceanspaces.com/")
	assert.False(t, ok)
}

func TestObjectKeys(t *testing.T) {
	assert.Equal(t, "marketplace/avatars/customer/kc-42/avatar.png", AvatarKey("CUSTOMER", "kc-42", "png"))
	assert.Equal(t, "marketplace/salons/7/cover.jpg", SalonCoverKey(7, "jpg"))
	assert.Equal(t, "marketplace/salons/7/gallery/1700000000.webp", SalonGalleryKey(7, 1700000000, "webp"))
}

func pngBytes() []byte {
	return append([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, make([]byte, 24)...)
}

func jpegBytes() []byte {
	return append([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}, make([]byte, 24)...)
}

func gifBytes() []byte {
	return append([]byte("GIF89a"), make([]byte, 24)...)
}

func TestValidateImage(t *testing.T) {
	ext, mime, err := ValidateImage("avatar.png", pngBytes(), MaxAvatarSize)
	require.NoError(t, err)
	assert.Equal(t, "png", ext)
	assert.Equal(t, "image/png", mime)

	// .jpeg and .jpg both sniff as jpg.
	ext, mime, err = ValidateImage("photo.JPEG", jpegBytes(), MaxAvatarSize)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", ext)
	assert.Equal(t, "image/jpeg", mime)

	ext, _, err = ValidateImage("anim.gif", gifBytes(), MaxAvatarSize)
	require.NoError(t, err)
	assert.Equal(t, "gif", ext)
}

func TestValidateImage_Rejections(t *testing.T) {
	_, _, err := ValidateImage("report.pdf", pngBytes(), MaxAvatarSize)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "File type not allowed")

	// Extension says jpg, bytes say png.
	_, _, err = ValidateImage("sneaky.jpg", pngBytes(), MaxAvatarSize)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match")

	_, _, err = ValidateImage("big.png", pngBytes(), 8)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "File too large")

	_, _, err = ValidateImage("empty.png", nil, MaxAvatarSize)
	require.Error(t, err)
}
