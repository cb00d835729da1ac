package common

// APIKeyHeaderName is the header carrying the remote directory API key.
const APIKeyHeaderName = "x-api-key"

// AvatarContentType is the content type assigned to backfilled avatars.
const AvatarContentType = "image/jpeg"
