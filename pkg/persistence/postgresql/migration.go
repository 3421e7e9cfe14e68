package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Account identities. Email is unique system-wide.
			CREATE TABLE users (
				id UUID PRIMARY KEY,
				first_name VARCHAR(20) NOT NULL,
				last_name VARCHAR(20),
				email VARCHAR(254) NOT NULL,
				password_hash TEXT NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE UNIQUE INDEX idx_users_email ON users(email);

			-- Workflow roots. Name is unique across the system, not per owner.
			CREATE TABLE workflows (
				id UUID PRIMARY KEY,
				owner_id UUID NOT NULL CONSTRAINT fk_workflows_owner REFERENCES users(id),
				name VARCHAR(128) NOT NULL,
				title VARCHAR(32) NOT NULL,
				enabled BOOLEAN NOT NULL DEFAULT false,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE UNIQUE INDEX idx_workflows_name ON workflows(name);
			CREATE INDEX idx_workflows_owner_id ON workflows(owner_id);

			CREATE TABLE workflow_nodes (
				workflow_id UUID NOT NULL CONSTRAINT fk_nodes_workflow REFERENCES workflows(id) ON DELETE CASCADE,
				id UUID NOT NULL,
				position_x DOUBLE PRECISION NOT NULL DEFAULT 0,
				position_y DOUBLE PRECISION NOT NULL DEFAULT 0,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				PRIMARY KEY (workflow_id, id)
			);

			CREATE INDEX idx_workflow_nodes_workflow_id ON workflow_nodes(workflow_id);

			-- Composite foreign keys force both endpoints into the same
			-- workflow as the connection row itself.
			CREATE TABLE workflow_connections (
				workflow_id UUID NOT NULL CONSTRAINT fk_connections_workflow REFERENCES workflows(id) ON DELETE CASCADE,
				id UUID NOT NULL,
				from_id UUID NOT NULL,
				to_id UUID NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				PRIMARY KEY (workflow_id, id),
				CONSTRAINT fk_connections_from FOREIGN KEY (workflow_id, from_id)
					REFERENCES workflow_nodes(workflow_id, id) ON DELETE CASCADE,
				CONSTRAINT fk_connections_to FOREIGN KEY (workflow_id, to_id)
					REFERENCES workflow_nodes(workflow_id, id) ON DELETE CASCADE
			);

			CREATE INDEX idx_workflow_connections_workflow_id ON workflow_connections(workflow_id);
			CREATE INDEX idx_workflow_connections_from ON workflow_connections(from_id);
			CREATE INDEX idx_workflow_connections_to ON workflow_connections(to_id);

			-- Owner-scoped third-party credential blobs.
			CREATE TABLE credentials (
				id UUID PRIMARY KEY,
				owner_id UUID NOT NULL CONSTRAINT fk_credentials_owner REFERENCES users(id),
				title VARCHAR(128) NOT NULL,
				platform VARCHAR(64) NOT NULL,
				data JSONB NOT NULL DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_credentials_owner_id ON credentials(owner_id);
		`,
	}
}
