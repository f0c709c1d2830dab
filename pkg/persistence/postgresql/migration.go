package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Create workflows table
			CREATE TABLE workflows (
				id UUID PRIMARY KEY,
				clinic_id VARCHAR(255) NOT NULL,
				customer_id VARCHAR(255) NOT NULL,
				customer_name VARCHAR(255) NOT NULL,
				customer_email VARCHAR(255),
				customer_phone VARCHAR(50),
				current_stage VARCHAR(50) NOT NULL,
				assigned_sales_id VARCHAR(255),
				metadata JSONB,
				version BIGINT NOT NULL DEFAULT 1,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflows_clinic_stage ON workflows(clinic_id, current_stage);
			CREATE INDEX idx_workflows_assigned_sales ON workflows(assigned_sales_id);
			CREATE INDEX idx_workflows_updated_at ON workflows(updated_at);

			-- One active journey per customer per clinic
			CREATE UNIQUE INDEX idx_workflows_active_customer
				ON workflows(clinic_id, customer_id)
				WHERE current_stage NOT IN ('completed', 'cancelled');

			-- Create workflow_actions table (append-only transition log)
			CREATE TABLE workflow_actions (
				id UUID PRIMARY KEY,
				workflow_id UUID NOT NULL REFERENCES workflows(id),
				action_type VARCHAR(50) NOT NULL,
				from_stage VARCHAR(50) NOT NULL,
				to_stage VARCHAR(50) NOT NULL,
				performed_by VARCHAR(255),
				action_data JSONB,
				notes TEXT,
				seq BIGSERIAL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflow_actions_workflow_id ON workflow_actions(workflow_id);
			CREATE INDEX idx_workflow_actions_created_at ON workflow_actions(created_at);

			-- Create tasks table
			CREATE TABLE tasks (
				id UUID PRIMARY KEY,
				workflow_id UUID NOT NULL,
				clinic_id VARCHAR(255) NOT NULL,
				assigned_to VARCHAR(255),
				task_type VARCHAR(50) NOT NULL,
				title VARCHAR(255) NOT NULL,
				description TEXT,
				customer_name VARCHAR(255),
				priority VARCHAR(20) NOT NULL,
				priority_score DOUBLE PRECISION NOT NULL DEFAULT 0,
				status VARCHAR(20) NOT NULL,
				due_date TIMESTAMP WITH TIME ZONE,
				estimated_duration INT,
				task_data JSONB,
				notes JSONB,
				completed_at TIMESTAMP WITH TIME ZONE,
				completed_by VARCHAR(255),
				version BIGINT NOT NULL DEFAULT 1,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_tasks_assigned_to ON tasks(assigned_to);
			CREATE INDEX idx_tasks_clinic_status ON tasks(clinic_id, status);
			CREATE INDEX idx_tasks_workflow_id ON tasks(workflow_id);
			CREATE INDEX idx_tasks_priority_score ON tasks(priority_score);

			-- Create workflow_events table (append-only notification log)
			CREATE TABLE workflow_events (
				id UUID PRIMARY KEY,
				workflow_id UUID NOT NULL,
				event_type VARCHAR(100) NOT NULL,
				source_user_id VARCHAR(255),
				target_users TEXT[] NOT NULL DEFAULT '{}',
				data JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflow_events_workflow_id ON workflow_events(workflow_id);
			CREATE INDEX idx_workflow_events_created_at ON workflow_events(created_at);

			-- Create staff table (read model of the clinic record store)
			CREATE TABLE staff (
				id VARCHAR(255) PRIMARY KEY,
				clinic_id VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				role VARCHAR(50) NOT NULL,
				active BOOLEAN NOT NULL DEFAULT TRUE
			);

			CREATE INDEX idx_staff_clinic_active ON staff(clinic_id, active);
		`,
	}
}
