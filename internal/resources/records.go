package resources

// Each record type mirrors one KindSpec's Attributes list field-for-field
// (internal/catalog/registry.go) and is the shape both the manifest
// compiler (from YAML) and the state reader (from a fetch) produce.
// YAML tags follow the blueprint's snake_case keys (spec §6.1); the
// compiler decodes directly into these via yaml.v3.

type Database struct {
	Name                        string `yaml:"name"`
	DataRetentionTimeInDays     *int   `yaml:"data_retention_time_in_days,omitempty"`
	Comment                     *string `yaml:"comment,omitempty"`
	Transient                   bool   `yaml:"transient,omitempty"`
	Owner                       string `yaml:"owner,omitempty"`
	MaxDataExtensionTimeInDays  *int   `yaml:"max_data_extension_time_in_days,omitempty"`
	ExternalVolume              *string `yaml:"external_volume,omitempty"`
	Catalog                     *string `yaml:"catalog,omitempty"`
	DefaultDDLCollation         *string `yaml:"default_ddl_collation,omitempty"`
}

type Schema struct {
	Name                       string  `yaml:"name"`
	Transient                  bool    `yaml:"transient,omitempty"`
	Owner                      string  `yaml:"owner,omitempty"`
	ManagedAccess              bool    `yaml:"managed_access,omitempty"`
	DataRetentionTimeInDays    *int    `yaml:"data_retention_time_in_days,omitempty"`
	MaxDataExtensionTimeInDays *int    `yaml:"max_data_extension_time_in_days,omitempty"`
	DefaultDDLCollation        *string `yaml:"default_ddl_collation,omitempty"`
	Comment                    *string `yaml:"comment,omitempty"`

	// Implicit marks a schema injected by the resolver's PUBLIC-schema
	// propagation step rather than declared directly in the manifest
	// (spec §9 "implicit PUBLIC schema" re-architecture note).
	Implicit bool `yaml:"-"`
}

type Table struct {
	Name                  string   `yaml:"name"`
	Columns               []Column `yaml:"columns,omitempty"`
	ClusterBy             []string `yaml:"cluster_by,omitempty"`
	Transient             bool     `yaml:"transient,omitempty"`
	Owner                 string   `yaml:"owner,omitempty"`
	Comment               *string  `yaml:"comment,omitempty"`
	EnableSchemaEvolution bool     `yaml:"enable_schema_evolution,omitempty"`
	DefaultDDLCollation   *string  `yaml:"default_ddl_collation,omitempty"`
	ChangeTracking        bool     `yaml:"change_tracking,omitempty"`
}

type Column struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Nullable bool   `yaml:"nullable,omitempty"`
	Comment  *string `yaml:"comment,omitempty"`
}

type View struct {
	Name           string   `yaml:"name"`
	Owner          string   `yaml:"owner,omitempty"`
	Secure         bool     `yaml:"secure,omitempty"`
	Columns        []Column `yaml:"columns,omitempty"`
	ChangeTracking bool     `yaml:"change_tracking,omitempty"`
	Comment        *string  `yaml:"comment,omitempty"`
	As             string   `yaml:"as,omitempty"`

	// References lists the tables/views this view selects from, used by
	// the planner to build the catalog-declared "referenced -> referrer"
	// dependency edge (spec §4.6 step 4).
	References []string `yaml:"-"`
}

type Warehouse struct {
	Name                             string  `yaml:"name"`
	Owner                            string  `yaml:"owner,omitempty"`
	WarehouseType                    string  `yaml:"warehouse_type,omitempty"`
	WarehouseSize                    string  `yaml:"warehouse_size,omitempty"`
	AutoSuspend                      *int    `yaml:"auto_suspend,omitempty"`
	AutoResume                       bool    `yaml:"auto_resume,omitempty"`
	Comment                          *string `yaml:"comment,omitempty"`
	ResourceMonitor                  *string `yaml:"resource_monitor,omitempty"`
	EnableQueryAcceleration          bool    `yaml:"enable_query_acceleration,omitempty"`
	QueryAccelerationMaxScaleFactor  *int    `yaml:"query_acceleration_max_scale_factor,omitempty"`
	MaxClusterCount                  *int   `yaml:"max_cluster_count,omitempty"`
	MinClusterCount                  *int   `yaml:"min_cluster_count,omitempty"`
	ScalingPolicy                    *string `yaml:"scaling_policy,omitempty"`
	MaxConcurrencyLevel              *int   `yaml:"max_concurrency_level,omitempty"`
	StatementQueuedTimeoutInSeconds  *int   `yaml:"statement_queued_timeout_in_seconds,omitempty"`
	StatementTimeoutInSeconds        *int   `yaml:"statement_timeout_in_seconds,omitempty"`
}

type Role struct {
	Name    string  `yaml:"name"`
	Owner   string  `yaml:"owner,omitempty"`
	Comment *string `yaml:"comment,omitempty"`
}

type DatabaseRole struct {
	Name    string  `yaml:"name"`
	Owner   string  `yaml:"owner,omitempty"`
	Comment *string `yaml:"comment,omitempty"`
}

type User struct {
	Name                  string   `yaml:"name"`
	LoginName             *string  `yaml:"login_name,omitempty"`
	DisplayName           *string  `yaml:"display_name,omitempty"`
	FirstName             *string  `yaml:"first_name,omitempty"`
	MiddleName            *string  `yaml:"middle_name,omitempty"`
	LastName              *string  `yaml:"last_name,omitempty"`
	Email                 *string  `yaml:"email,omitempty"`
	Comment               *string  `yaml:"comment,omitempty"`
	Disabled              bool     `yaml:"disabled,omitempty"`
	MustChangePassword    *bool    `yaml:"must_change_password,omitempty"`
	DefaultWarehouse      *string  `yaml:"default_warehouse,omitempty"`
	DefaultNamespace      *string  `yaml:"default_namespace,omitempty"`
	DefaultRole           *string  `yaml:"default_role,omitempty"`
	DefaultSecondaryRoles []string `yaml:"default_secondary_roles,omitempty"`
	Type                  string   `yaml:"type,omitempty"`
	RSAPublicKey          *string  `yaml:"rsa_public_key,omitempty"`
	NetworkPolicy         *string  `yaml:"network_policy,omitempty"`
	Owner                 string  `yaml:"owner,omitempty"`
}

// Grant is a non-object resource; On/To are the granted-on object name
// and the grantee name as written in the manifest, and the resolver
// does not rewrite them.
type Grant struct {
	Priv        string `yaml:"priv"`
	On          string `yaml:"on"`
	OnType      string `yaml:"on_type"`
	To          string `yaml:"to"`
	ToType      string `yaml:"to_type"`
	GrantOption bool   `yaml:"grant_option,omitempty"`
}

type RoleGrant struct {
	Role   string `yaml:"role"`
	To     string `yaml:"to"`
	ToType string `yaml:"to_type,omitempty"`
}

type InternalStage struct {
	Name      string  `yaml:"name"`
	Owner     string  `yaml:"owner,omitempty"`
	Directory bool    `yaml:"directory,omitempty"`
	Comment   *string `yaml:"comment,omitempty"`
}

type ExternalStage struct {
	Name                string  `yaml:"name"`
	URL                 string  `yaml:"url"`
	Owner               string  `yaml:"owner,omitempty"`
	StorageIntegration  *string `yaml:"storage_integration,omitempty"`
	Directory           bool    `yaml:"directory,omitempty"`
	Comment             *string `yaml:"comment,omitempty"`
}

type Task struct {
	Name                                  string   `yaml:"name"`
	Warehouse                             *string  `yaml:"warehouse,omitempty"`
	Schedule                              *string  `yaml:"schedule,omitempty"`
	Config                                *string  `yaml:"config,omitempty"`
	AllowOverlappingExecution             bool     `yaml:"allow_overlapping_execution,omitempty"`
	UserTaskManagedInitialWarehouseSize   *string  `yaml:"user_task_managed_initial_warehouse_size,omitempty"`
	UserTaskTimeoutMs                     *int     `yaml:"user_task_timeout_ms,omitempty"`
	SuspendTaskAfterNumFailures           *int     `yaml:"suspend_task_after_num_failures,omitempty"`
	ErrorIntegration                      *string  `yaml:"error_integration,omitempty"`
	State                                 string   `yaml:"state,omitempty"`
	Owner                                 string   `yaml:"owner,omitempty"`
	Comment                               *string  `yaml:"comment,omitempty"`
	After                                 []string `yaml:"after,omitempty"` // predecessor task names; planner dependency edge
	As                                    string   `yaml:"as"`
}

type Share struct {
	Name     string   `yaml:"name"`
	Owner    string   `yaml:"owner,omitempty"`
	Comment  *string  `yaml:"comment,omitempty"`
	Accounts []string `yaml:"accounts,omitempty"`
}

type StorageIntegration struct {
	Name                    string   `yaml:"name"`
	Type                    string   `yaml:"type,omitempty"`
	Enabled                 bool     `yaml:"enabled,omitempty"`
	Comment                 *string  `yaml:"comment,omitempty"`
	Owner                   string   `yaml:"owner,omitempty"`
	StorageProvider         string   `yaml:"storage_provider"`
	StorageAWSRoleARN       *string  `yaml:"storage_aws_role_arn,omitempty"`
	StorageAllowedLocations []string `yaml:"storage_allowed_locations,omitempty"`
	StorageBlockedLocations []string `yaml:"storage_blocked_locations,omitempty"`
	StorageAWSObjectACL     *string  `yaml:"storage_aws_object_acl,omitempty"`
}

type ApiIntegration struct {
	Name               string   `yaml:"name"`
	APIProvider        string   `yaml:"api_provider"`
	Enabled            bool     `yaml:"enabled,omitempty"`
	Comment            *string  `yaml:"comment,omitempty"`
	Owner              string   `yaml:"owner,omitempty"`
	APIAllowedPrefixes []string `yaml:"api_allowed_prefixes,omitempty"`
	APIBlockedPrefixes []string `yaml:"api_blocked_prefixes,omitempty"`
}

type NotificationIntegration struct {
	Name                 string  `yaml:"name"`
	Type                 string  `yaml:"type,omitempty"`
	Enabled              bool    `yaml:"enabled,omitempty"`
	Comment              *string `yaml:"comment,omitempty"`
	Owner                string  `yaml:"owner,omitempty"`
	NotificationProvider string  `yaml:"notification_provider"`
}

type ResourceMonitor struct {
	Name           string   `yaml:"name"`
	Owner          string   `yaml:"owner,omitempty"`
	CreditQuota    *int     `yaml:"credit_quota,omitempty"`
	Frequency      *string  `yaml:"frequency,omitempty"`
	StartTimestamp *string  `yaml:"start_timestamp,omitempty"`
	EndTimestamp   *string  `yaml:"end_timestamp,omitempty"`
	NotifyUsers    []string `yaml:"notify_users,omitempty"`
}

type MaskingPolicy struct {
	Name       string  `yaml:"name"`
	Owner      string  `yaml:"owner,omitempty"`
	ReturnType string  `yaml:"return_type"`
	Body       string  `yaml:"body"`
	Comment    *string `yaml:"comment,omitempty"`
}
