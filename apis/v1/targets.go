package v1

const TargetsKind = "Targets"

// TargetsFile lists named transfer destinations.
type TargetsFile struct {
	Kind     string   `yaml:"kind" json:"kind" validate:"required,eq=Targets"`
	Metadata Metadata `yaml:"metadata,omitempty" json:"metadata,omitempty"`
	Targets  []Target `yaml:"targets" json:"targets" validate:"required,min=1,unique=Name,dive"`
}

type Metadata struct {
	Name string `yaml:"name,omitempty" json:"name,omitempty"`
}

// Target is one destination. SSH is required for the copy, sync and
// session methods and S3 for the s3 method.
type Target struct {
	Name   string `yaml:"name" json:"name" validate:"required"`
	Method string `yaml:"method" json:"method" validate:"required,oneof=copy sync session s3"`
	// Compress enables compression on the wire (sync only).
	Compress bool `yaml:"compress,omitempty" json:"compress,omitempty"`
	// Timeout is a Go duration string, e.g. "5m". Empty means no limit.
	Timeout *string `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	SSH *SSHTarget `yaml:"ssh,omitempty" json:"ssh,omitempty" validate:"required_unless=Method s3"`
	S3  *S3Target  `yaml:"s3,omitempty" json:"s3,omitempty" validate:"required_if=Method s3"`
}

type SSHTarget struct {
	User string `yaml:"user" json:"user" validate:"required" template:""`
	Host string `yaml:"host" json:"host" validate:"required" template:""`
	Path string `yaml:"path" json:"path" validate:"required" template:""`
}

type S3Target struct {
	Bucket          string `yaml:"bucket" json:"bucket" validate:"required" template:""`
	Prefix          string `yaml:"prefix,omitempty" json:"prefix,omitempty" template:""`
	Region          string `yaml:"region,omitempty" json:"region,omitempty" template:""`
	Endpoint        string `yaml:"endpoint,omitempty" json:"endpoint,omitempty" template:""`
	AccessKeyID     string `yaml:"access_key_id,omitempty" json:"access_key_id,omitempty" template:""`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" json:"secret_access_key,omitempty" template:""`
	ForcePathStyle  bool   `yaml:"force_path_style,omitempty" json:"force_path_style,omitempty"`
}
