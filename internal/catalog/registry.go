package catalog

// fetchable is a convenience AttributeSpec for a plain attribute that
// round-trips from a fetch with no special handling.
func fetchable(name string) AttributeSpec {
	return AttributeSpec{Name: name, FetchAble: true}
}

func fetchableSet(name string) AttributeSpec {
	return AttributeSpec{Name: name, FetchAble: true, OrderInsensitive: true}
}

func knownAfterApply(name string) AttributeSpec {
	return AttributeSpec{Name: name, FetchAble: true, KnownAfterApply: true}
}

func editionGated(name string, ed Edition) AttributeSpec {
	return AttributeSpec{Name: name, FetchAble: true, EditionRequired: ed}
}

// DefaultRegistry builds the startup Registry covering the 16 kinds
// this implementation carries (see DESIGN.md "Catalog scope decision").
// Attribute lists are grounded field-for-field on the corresponding
// fetch_<kind> function in original_source/snowcap/data_provider.py.
func DefaultRegistry() *Registry {
	return NewRegistry([]KindSpec{
		{
			Kind:         KindDatabase,
			Scope:        ScopeAccount,
			DefaultOwner: "SYSADMIN",
			CreatePriv:   "CREATE DATABASE",
			Privs:        []string{"CREATE DATABASE", "USAGE", "MONITOR", "OWNERSHIP"},
			Attributes: []AttributeSpec{
				fetchable("name"),
				fetchable("data_retention_time_in_days"),
				fetchable("comment"),
				fetchable("transient"),
				fetchable("owner"),
				fetchable("max_data_extension_time_in_days"),
				fetchable("external_volume"),
				fetchable("catalog"),
				fetchable("default_ddl_collation"),
			},
		},
		{
			// The PUBLIC schema of every database is implicit (spec §3.2);
			// the resolver's injection step is what instantiates it, this
			// spec entry just describes the kind itself.
			Kind:         KindSchema,
			Scope:        ScopeDatabase,
			DefaultOwner: "SYSADMIN",
			CreatePriv:   "CREATE SCHEMA",
			Privs:        []string{"CREATE SCHEMA", "USAGE", "MONITOR", "OWNERSHIP"},
			Attributes: []AttributeSpec{
				fetchable("name"),
				fetchable("transient"),
				fetchable("owner"),
				fetchable("managed_access"),
				fetchable("data_retention_time_in_days"),
				fetchable("max_data_extension_time_in_days"),
				fetchable("default_ddl_collation"),
				fetchable("comment"),
			},
		},
		{
			Kind:         KindTable,
			Scope:        ScopeSchema,
			DefaultOwner: "SYSADMIN",
			CreatePriv:   "CREATE TABLE",
			Privs:        []string{"SELECT", "INSERT", "UPDATE", "DELETE", "TRUNCATE", "REFERENCES", "OWNERSHIP"},
			Attributes: []AttributeSpec{
				fetchable("name"),
				knownAfterApply("columns"),
				fetchableSet("cluster_by"),
				fetchable("transient"),
				fetchable("owner"),
				fetchable("comment"),
				fetchable("enable_schema_evolution"),
				fetchable("default_ddl_collation"),
				fetchable("change_tracking"),
			},
		},
		{
			Kind:         KindView,
			Scope:        ScopeSchema,
			DefaultOwner: "SYSADMIN",
			CreatePriv:   "CREATE VIEW",
			Privs:        []string{"SELECT", "OWNERSHIP"},
			Attributes: []AttributeSpec{
				fetchable("name"),
				fetchable("owner"),
				fetchable("secure"),
				knownAfterApply("columns"),
				fetchable("change_tracking"),
				fetchable("comment"),
				{Name: "as", FetchAble: true, IgnoreChanges: false},
			},
		},
		{
			Kind:         KindWarehouse,
			Scope:        ScopeAccount,
			DefaultOwner: "SYSADMIN",
			CreatePriv:   "CREATE WAREHOUSE",
			Privs:        []string{"CREATE WAREHOUSE", "USAGE", "OPERATE", "MONITOR", "MODIFY", "OWNERSHIP"},
			Attributes: []AttributeSpec{
				fetchable("name"),
				fetchable("owner"),
				fetchable("warehouse_type"),
				fetchable("warehouse_size"),
				fetchable("auto_suspend"),
				fetchable("auto_resume"),
				fetchable("comment"),
				fetchable("resource_monitor"),
				editionGated("enable_query_acceleration", EditionEnterprise),
				editionGated("query_acceleration_max_scale_factor", EditionEnterprise),
				editionGated("max_cluster_count", EditionEnterprise),
				editionGated("min_cluster_count", EditionEnterprise),
				editionGated("scaling_policy", EditionEnterprise),
				fetchable("max_concurrency_level"),
				fetchable("statement_queued_timeout_in_seconds"),
				fetchable("statement_timeout_in_seconds"),
			},
		},
		{
			Kind:         KindRole,
			Scope:        ScopeAccount,
			DefaultOwner: "USERADMIN",
			CreatePriv:   "CREATE ROLE",
			Privs:        []string{"CREATE ROLE", "APPLY ROLE", "OWNERSHIP"},
			Attributes: []AttributeSpec{
				fetchable("name"),
				fetchable("owner"),
				fetchable("comment"),
			},
		},
		{
			Kind:         KindDatabaseRole,
			Scope:        ScopeDatabase,
			DefaultOwner: "SYSADMIN",
			CreatePriv:   "CREATE DATABASE ROLE",
			Privs:        []string{"CREATE DATABASE ROLE", "OWNERSHIP"},
			Attributes: []AttributeSpec{
				fetchable("name"),
				fetchable("owner"),
				fetchable("comment"),
			},
		},
		{
			Kind:         KindUser,
			Scope:        ScopeAccount,
			DefaultOwner: "USERADMIN",
			CreatePriv:   "CREATE USER",
			Privs:        []string{"CREATE USER", "OWNERSHIP"},
			Attributes: []AttributeSpec{
				fetchable("name"),
				fetchable("login_name"),
				fetchable("display_name"),
				fetchable("first_name"),
				fetchable("middle_name"),
				fetchable("last_name"),
				fetchable("email"),
				fetchable("comment"),
				fetchable("disabled"),
				fetchable("must_change_password"),
				fetchable("default_warehouse"),
				fetchable("default_namespace"),
				fetchable("default_role"),
				fetchableSet("default_secondary_roles"),
				fetchable("type"),
				{Name: "rsa_public_key", FetchAble: true, IgnoreChanges: false},
				fetchable("network_policy"),
				fetchable("owner"),
			},
		},
		{
			// Non-object resource; FQN.Params disambiguates (priv, on, to).
			Kind:  KindGrant,
			Scope: ScopeAnonymous,
			Privs: []string{"ALL"}, // actual set depends on the granted-on kind, resolved at diff time
			Attributes: []AttributeSpec{
				fetchableSet("priv"), // ALL expands to PrivsFor(on_type); compared as a set
				fetchable("on"),
				fetchable("on_type"),
				fetchable("to"),
				fetchable("to_type"),
				fetchable("grant_option"),
				{Name: "owner", FetchAble: true, IgnoreChanges: true}, // granted_by is not a stable identity
			},
		},
		{
			Kind:  KindRoleGrant,
			Scope: ScopeAnonymous,
			Attributes: []AttributeSpec{
				fetchable("role"),
				fetchable("to"),
				fetchable("to_type"),
			},
		},
		{
			// Ambiguous tag: resolved to InternalStage or ExternalStage by
			// PolymorphicResolver (spec §4.2).
			Kind:                KindStage,
			Scope:               ScopeSchema,
			PolymorphicResolver: resolveStageSubtype,
		},
		{
			Kind:         KindInternalStage,
			Scope:        ScopeSchema,
			DefaultOwner: "SYSADMIN",
			CreatePriv:   "CREATE STAGE",
			Privs:        []string{"CREATE STAGE", "READ", "WRITE", "USAGE", "OWNERSHIP"},
			Attributes: []AttributeSpec{
				fetchable("name"),
				fetchable("owner"),
				fetchable("type"),
				fetchable("directory"),
				fetchable("comment"),
			},
		},
		{
			Kind:         KindExternalStage,
			Scope:        ScopeSchema,
			DefaultOwner: "SYSADMIN",
			CreatePriv:   "CREATE STAGE",
			Privs:        []string{"CREATE STAGE", "READ", "WRITE", "USAGE", "OWNERSHIP"},
			Attributes: []AttributeSpec{
				fetchable("name"),
				fetchable("url"),
				fetchable("owner"),
				fetchable("type"),
				fetchable("storage_integration"),
				fetchable("directory"),
				fetchable("comment"),
			},
		},
		{
			Kind:         KindTask,
			Scope:        ScopeSchema,
			DefaultOwner: "SYSADMIN",
			CreatePriv:   "CREATE TASK",
			Privs:        []string{"CREATE TASK", "OPERATE", "MONITOR", "OWNERSHIP"},
			Attributes: []AttributeSpec{
				fetchable("name"),
				fetchable("warehouse"),
				fetchable("schedule"),
				fetchable("config"),
				fetchable("allow_overlapping_execution"),
				fetchable("user_task_managed_initial_warehouse_size"),
				fetchable("user_task_timeout_ms"),
				fetchable("suspend_task_after_num_failures"),
				fetchable("error_integration"),
				knownAfterApply("state"),
				fetchable("owner"),
				fetchable("comment"),
				fetchableSet("after"), // catalog-declared reference: task on its predecessor(s)
				{Name: "as", FetchAble: true},
			},
		},
		{
			Kind:         KindShare,
			Scope:        ScopeAccount,
			DefaultOwner: "ACCOUNTADMIN",
			CreatePriv:   "CREATE SHARE",
			Privs:        []string{"CREATE SHARE", "OWNERSHIP"},
			Attributes: []AttributeSpec{
				fetchable("name"),
				fetchable("owner"),
				fetchable("comment"),
				fetchableSet("accounts"),
			},
		},
		{
			Kind:                KindIntegration,
			Scope:               ScopeAccount,
			PolymorphicResolver: resolveIntegrationSubtype,
		},
		{
			Kind:            KindStorageIntegration,
			Scope:           ScopeAccount,
			DefaultOwner:    "ACCOUNTADMIN",
			CreatePriv:      "CREATE INTEGRATION",
			EditionRequired: EditionStandard,
			Privs:           []string{"CREATE INTEGRATION", "USAGE", "OWNERSHIP"},
			Attributes: []AttributeSpec{
				fetchable("name"),
				fetchable("type"),
				fetchable("enabled"),
				fetchable("comment"),
				fetchable("owner"),
				fetchable("storage_provider"),
				fetchable("storage_aws_role_arn"),
				fetchableSet("storage_allowed_locations"),
				fetchableSet("storage_blocked_locations"),
				fetchable("storage_aws_object_acl"),
			},
		},
		{
			Kind:         KindApiIntegration,
			Scope:        ScopeAccount,
			DefaultOwner: "ACCOUNTADMIN",
			CreatePriv:   "CREATE INTEGRATION",
			Privs:        []string{"CREATE INTEGRATION", "USAGE", "OWNERSHIP"},
			Attributes: []AttributeSpec{
				fetchable("name"),
				fetchable("api_provider"),
				fetchable("enabled"),
				fetchable("comment"),
				fetchable("owner"),
				fetchableSet("api_allowed_prefixes"),
				fetchableSet("api_blocked_prefixes"),
			},
		},
		{
			Kind:         KindNotificationIntegration,
			Scope:        ScopeAccount,
			DefaultOwner: "ACCOUNTADMIN",
			CreatePriv:   "CREATE INTEGRATION",
			Privs:        []string{"CREATE INTEGRATION", "USAGE", "OWNERSHIP"},
			Attributes: []AttributeSpec{
				fetchable("name"),
				fetchable("type"),
				fetchable("enabled"),
				fetchable("comment"),
				fetchable("owner"),
				fetchable("notification_provider"),
			},
		},
		{
			Kind:         KindResourceMonitor,
			Scope:        ScopeAccount,
			DefaultOwner: "ACCOUNTADMIN",
			CreatePriv:   "MONITOR USAGE",
			Privs:        []string{"MONITOR USAGE", "OWNERSHIP"},
			Attributes: []AttributeSpec{
				fetchable("name"),
				fetchable("owner"),
				fetchable("credit_quota"),
				fetchable("frequency"),
				fetchable("start_timestamp"),
				fetchable("end_timestamp"),
				fetchableSet("notify_users"),
			},
		},
		{
			Kind:            KindMaskingPolicy,
			Scope:           ScopeSchema,
			DefaultOwner:    "SYSADMIN",
			CreatePriv:      "CREATE MASKING POLICY",
			EditionRequired: EditionEnterprise,
			Privs:           []string{"CREATE MASKING POLICY", "APPLY", "OWNERSHIP"},
			Attributes: []AttributeSpec{
				fetchable("name"),
				fetchable("owner"),
				knownAfterApply("signature"),
				fetchable("return_type"),
				{Name: "body", FetchAble: true},
				fetchable("comment"),
			},
		},
	})
}

// resolveStageSubtype picks InternalStage or ExternalStage from a
// decoded "stage" record's "type" field, grounded on fetch_stage's own
// `data["type"] == "EXTERNAL"` branch.
func resolveStageSubtype(record map[string]any) (Kind, error) {
	t, _ := record["type"].(string)
	if t == "EXTERNAL" {
		return KindExternalStage, nil
	}

	return KindInternalStage, nil
}

// resolveIntegrationSubtype picks the integration subtype from a
// decoded "integration" record's "category" field, grounded on
// SHOW INTEGRATIONS' CATEGORY column (STORAGE | API | NOTIFICATION).
func resolveIntegrationSubtype(record map[string]any) (Kind, error) {
	category, _ := record["category"].(string)

	switch category {
	case "STORAGE":
		return KindStorageIntegration, nil
	case "API":
		return KindApiIntegration, nil
	case "NOTIFICATION":
		return KindNotificationIntegration, nil
	default:
		return "", errUnresolvedIntegrationCategory(category)
	}
}

func errUnresolvedIntegrationCategory(category string) error {
	return &unresolvedPolymorphicError{tag: string(KindIntegration), discriminator: category}
}

type unresolvedPolymorphicError struct {
	tag           string
	discriminator string
}

func (e *unresolvedPolymorphicError) Error() string {
	return "catalog: no resolver match for " + e.tag + " category " + e.discriminator
}
