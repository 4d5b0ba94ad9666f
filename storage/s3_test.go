package storage

import (
	"errors"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
)

func TestObjectKey(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		want    string
		wantErr bool
	}{
		{name: "flat", path: "shot.png", want: "shot.png"},
		{name: "nested is slash separated", path: "runs/r1/shot.png", want: "runs/r1/shot.png"},
		{name: "cleans dot segments", path: "runs/./r1/../shot.png", want: "runs/shot.png"},
		{name: "empty", path: "", wantErr: true},
		{name: "traversal", path: "../shot.png", wantErr: true},
		{name: "absolute", path: "/etc/passwd", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := objectKey(tt.path)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPath)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsS3NotFoundError(t *testing.T) {
	assert.True(t, isS3NotFoundError(&smithy.GenericAPIError{Code: "NoSuchKey"}))
	assert.True(t, isS3NotFoundError(&smithy.GenericAPIError{Code: "NotFound"}))
	assert.False(t, isS3NotFoundError(&smithy.GenericAPIError{Code: "AccessDenied"}))
	assert.False(t, isS3NotFoundError(errors.New("boom")))
}

func TestJoinPublicURL(t *testing.T) {
	assert.Equal(t, "https://cdn.test/a/b.png", joinPublicURL("https://cdn.test/", "/a/b.png"))
	assert.Equal(t, "https://cdn.test/a.png", joinPublicURL("https://cdn.test", "a.png"))
}
