package config

import (
	"os"
	"strconv"
	"strings"
)

var (
	TLS_DOMAINS  = "" // e.g. "example.com,example2.com"
	BIND_ADDRESS = "0.0.0.0:8080"
	DEBUG_MODE   = true
	MYSQL_DSN    = ""              // MySQL will be used if this is set
	SQLITE_FILE  = "faceserver.db" // SQLite will be used if MYSQL_DSN is not configured
	// Data layout: reference images live in DATA_DIR/known_faces,
	// request uploads and annotated results in DATA_DIR/uploads
	DATA_DIR   = "data"
	MODELS_DIR = "models" // dlib model files + trained classifier weights
	TMP_DIR    = "/tmp"   // Local scratch space in case of S3 bucket
	// S3 bucket support. When S3_BUCKET is set, the data layout above is
	// created inside the bucket instead of on the local disk
	S3_BUCKET   = ""
	S3_REGION   = ""
	S3_ENDPOINT = ""
	S3_AUTH     = "" // "key:secret"
	// Recognition parameters
	MAX_UPLOAD_SIZE      = 16 * 1024 * 1024 // Max accepted image size in bytes
	FACE_MATCH_THRESHOLD = 0.6              // Min confidence to accept a match
	FACE_DETECT_CNN      = false            // Use the CNN detector by default. Much slower, better at unusual angles
	REGISTER_SINGLE_FACE = false            // Reject registrations containing more than one face
	MIN_FACE_SIZE        = 32               // Min face region side in pixels for descriptor extraction
	UPLOAD_TTL_HOURS     = 24               // Uploaded/annotated images are removed after this many hours
)

func init() {
	readEnvString("TLS_DOMAINS", &TLS_DOMAINS)
	readEnvString("BIND_ADDRESS", &BIND_ADDRESS)
	readEnvBool("DEBUG_MODE", &DEBUG_MODE)
	readEnvString("MYSQL_DSN", &MYSQL_DSN)
	readEnvString("SQLITE_FILE", &SQLITE_FILE)
	readEnvString("DATA_DIR", &DATA_DIR)
	readEnvString("MODELS_DIR", &MODELS_DIR)
	readEnvString("TMP_DIR", &TMP_DIR)
	readEnvString("S3_BUCKET", &S3_BUCKET)
	readEnvString("S3_REGION", &S3_REGION)
	readEnvString("S3_ENDPOINT", &S3_ENDPOINT)
	readEnvString("S3_AUTH", &S3_AUTH)
	readEnvInt("MAX_UPLOAD_SIZE", &MAX_UPLOAD_SIZE)
	readEnvFloat("FACE_MATCH_THRESHOLD", &FACE_MATCH_THRESHOLD)
	readEnvBool("FACE_DETECT_CNN", &FACE_DETECT_CNN)
	readEnvBool("REGISTER_SINGLE_FACE", &REGISTER_SINGLE_FACE)
	readEnvInt("MIN_FACE_SIZE", &MIN_FACE_SIZE)
	readEnvInt("UPLOAD_TTL_HOURS", &UPLOAD_TTL_HOURS)
}

func readEnvString(name string, value *string) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	*value = v
}

func readEnvBool(name string, value *bool) {
	v := strings.ToLower(os.Getenv(name))
	if v == "true" || v == "1" || v == "yes" || v == "on" {
		*value = true
	} else if v == "false" || v == "0" || v == "no" || v == "off" {
		*value = false
	}
}

func readEnvFloat(name string, value *float64) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return
	}
	*value = f
}

func readEnvInt(name string, value *int) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	f, err := strconv.Atoi(v)
	if err != nil {
		return
	}
	*value = f
}
